package main

import "github.com/user/credit-sentinel/cmd"

func main() {
	cmd.Execute()
}
