package domain

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, total, total_increasing
	DeviceClass       string // power, connectivity, nil
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
	HasAttributes     bool // publishes a JSON attribute bundle next to the state
}
