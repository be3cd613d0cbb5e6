// Command eepromctl reads and writes I2C EEPROM chips through the block
// device used by flash filesystems.
package main

import "github.com/sarchlab/eepromblk/eepromctl/cmd"

func main() {
	cmd.Execute()
}
