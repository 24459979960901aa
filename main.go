package main

import "github.com/ycchuang/org-management/cmd"

func main() {
	cmd.Execute()
}
