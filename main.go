// Command distpush builds a web project, zips the output and unpacks it on a
// remote host over SSH.
package main

import "github.com/jayteealao/distpush/cmd"

func main() {
	cmd.Execute()
}
