package main

import "github.com/Manu343726/vicemon/cmd"

func main() {
	cmd.Execute()
}
