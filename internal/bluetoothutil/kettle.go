package bluetoothutil

import "tinygo.org/x/bluetooth"

// The kettle tunnels its framed serial protocol through a single GATT
// characteristic under the 0x1820 service.
var (
	kettleServiceUUID = bluetooth.New16BitUUID(0x1820)
	kettleSerialUUID  = bluetooth.New16BitUUID(0x2A80)
)

func KettleServiceUUID() bluetooth.UUID {
	return kettleServiceUUID
}

func KettleSerialUUID() bluetooth.UUID {
	return kettleSerialUUID
}
