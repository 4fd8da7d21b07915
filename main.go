package main

import "github.com/huyquang-bka/ptz-chp/cmd"

func main() {
	cmd.Execute()
}
