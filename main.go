package main

import "github.com/jmehdipour/order-pipeline/cmd"

func main() {
	cmd.Execute()
}
