// Command zonectl inspects and manages mute zones.
package main

import "github.com/couchcryptid/mute-zones-service/internal/cli"

func main() {
	cli.Execute()
}
