package main

import "github.com/ValentinKolb/dQL/cmd"

func main() {
	cmd.Execute()
}
