// The main package for the showtimes executable.
package main

import "github.com/JakeFAU/showtimes/cmd"

func main() {
	cmd.Execute()
}
