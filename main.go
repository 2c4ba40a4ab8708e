package main

import "github.com/biospace/apiserver/cmd"

func main() {
	cmd.Execute()
}
