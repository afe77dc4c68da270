package main

import cmd "github.com/cozy-creator/medpredict/cmd/medpredict"

func main() {
	cmd.Execute()
}
