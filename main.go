/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package main

import "github.com/seckatie/urlhealth/cmd"

func main() {
	cmd.Execute()
}
