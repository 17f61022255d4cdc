package wtc640

import "tcsicore/propid"

// The worked reference property set: a deliberately small slice of the real
// device's property table (firmware version/serial readback, temperature,
// link speed, active palette, dead-pixel count) chosen to exercise every
// layer above the memory space without reproducing the full register file.
var (
	PropertyStatus          = propid.Register("wtc640.status", "accumulated status register bits")
	PropertyFirmwareVersion = propid.Register("wtc640.firmware_version", "main firmware version")
	PropertySerialNumber    = propid.Register("wtc640.serial_number", "device serial number")
	PropertyDeviceType      = propid.Register("wtc640.device_type", "connected device type")
	PropertyFPATemperature  = propid.Register("wtc640.fpa_temperature", "focal plane array temperature, in milli-degrees Celsius")
	PropertyBaudRate        = propid.Register("wtc640.baud_rate", "serial link speed")
	PropertyActivePalette   = propid.Register("wtc640.active_palette", "index of the currently applied palette bank")
	PropertyDeadPixelCount  = propid.Register("wtc640.dead_pixel_count", "number of entries in the dead-pixel replacement table")
)
