package main

import "github.com/evyataryagoni/ipgeolocation/internal/cli"

func main() {
	cli.Execute()
}
