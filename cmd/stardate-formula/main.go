package main

import "stardate-formula/internal/cli"

func main() {
	cli.Execute()
}
