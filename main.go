package main

import "github.com/user/ideascan/cmd"

func main() {
	cmd.Execute()
}
