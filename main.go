package main

import "pact-proof-backend/cmd"

func main() {
	cmd.Run()
}
