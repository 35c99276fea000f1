package main

import "github.com/khanhnv2901/seca-assert/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
