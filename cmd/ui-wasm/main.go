//go:build js && wasm

package main

import "github.com/Its-donkey/compass-auth/internal/ui/wasm"

func main() {
	wasm.RunApp()
}
