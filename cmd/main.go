// Copyright © 2021 Jonathan Whitaker <jonathan@whitaker.io>

package main

import "github.com/streamson-io/tson/cmd/cmd"

func main() {
	cmd.Execute()
}
