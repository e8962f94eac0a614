package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (flag -device or ENVMON_DEVICE)
// Val: raw YAML for that device; unset fields take defaults.
// -----------------------------------------------------------------------------

const cfgSim = `
device: sim
log:
  level: info
loop:
  period: 1s
  sync_on_boot: true
platform:
  kind: sim
messaging:
  transport: mqtt
  host: localhost
ntp:
  clock_mode: offset
`

const cfgRPi = `
device: rpi
loop:
  period: 1s
  sync_on_boot: true
platform:
  kind: linux
  i2c_bus: "1"
sensors:
  aht20_addr: 0x38
  bh1750_addr: 0x23
  ads1115_addr: 0x48
  adc_channel: 0
  ref_voltage: 3.3
messaging:
  transport: mqtt
  auto_reconnect: false
ntp:
  clock_mode: system
`

var embeddedConfigs = map[string][]byte{
	"sim": []byte(cfgSim),
	"rpi": []byte(cfgRPi),
}

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}
