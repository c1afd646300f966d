package main

import "github.com/user/sysguard/cmd"

func main() {
	cmd.Execute()
}
