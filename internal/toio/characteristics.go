package toio

// ServiceUUID is the primary GATT service every toio Core Cube advertises.
const ServiceUUID = "10b20100-5b3b-4571-9508-cf3efcd7bbae"

// Characteristic identifies one GATT characteristic of the cube service.
type Characteristic int

// Cube characteristics.
const (
	CharIDInformation Characteristic = iota + 1
	CharMotor
	CharLight
	CharSound
	CharSensor
	CharButton
	CharBattery
	CharConfiguration
)

var characteristicUUIDs = map[Characteristic]string{
	CharIDInformation: "10b20101-5b3b-4571-9508-cf3efcd7bbae",
	CharMotor:         "10b20102-5b3b-4571-9508-cf3efcd7bbae",
	CharLight:         "10b20103-5b3b-4571-9508-cf3efcd7bbae",
	CharSound:         "10b20104-5b3b-4571-9508-cf3efcd7bbae",
	CharSensor:        "10b20106-5b3b-4571-9508-cf3efcd7bbae",
	CharButton:        "10b20107-5b3b-4571-9508-cf3efcd7bbae",
	CharBattery:       "10b20108-5b3b-4571-9508-cf3efcd7bbae",
	CharConfiguration: "10b201ff-5b3b-4571-9508-cf3efcd7bbae",
}

var characteristicNames = map[Characteristic]string{
	CharIDInformation: "id_information",
	CharMotor:         "motor",
	CharLight:         "light",
	CharSound:         "sound",
	CharSensor:        "sensor",
	CharButton:        "button",
	CharBattery:       "battery",
	CharConfiguration: "configuration",
}

// UUID returns the characteristic's 128-bit UUID in canonical form.
func (c Characteristic) UUID() string {
	return characteristicUUIDs[c]
}

func (c Characteristic) String() string {
	if name, ok := characteristicNames[c]; ok {
		return name
	}
	return "unknown"
}

// Characteristics lists every characteristic a link must resolve.
func Characteristics() []Characteristic {
	return []Characteristic{
		CharIDInformation, CharMotor, CharLight, CharSound,
		CharSensor, CharButton, CharBattery, CharConfiguration,
	}
}

// WithoutResponse reports whether writes to c use write-without-response.
// The motor characteristic only accepts that mode.
func (c Characteristic) WithoutResponse() bool {
	return c == CharMotor
}
