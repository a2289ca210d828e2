package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE     = "bridge"
	STATE_CLASS_MEASUREMENT    = "measurement"
	DEVICE_CLASS_CONNECTIVITY  = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC    = "diagnostic"
	SENSOR_TYPE_SENSOR         = "sensor"
	SENSOR_TYPE_BINARY         = "binary_sensor"
	UNIT_PERCENT               = "%"
	FRIENDLY_NAME_DISCHARGE    = "Kennlinie Entladen"
	FRIENDLY_NAME_CHARGE       = "Kennlinie Laden"
	ICON_EFFICIENCY_CURVE      = "mdi:chart-bell-curve-cumulative"
	ENTITY_DOMAIN_SEPARATOR    = "."
)

// ObjectId strips the domain part of an entity id: sensor.foo => foo.
func ObjectId(entityId string) string {
	if _, objectId, ok := strings.Cut(entityId, ENTITY_DOMAIN_SEPARATOR); ok {
		return objectId
	}
	return entityId
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("effcurve_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Efficiency curve",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Efficiency curve %s", md5HashShort(baseTopic)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge availability
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

// CurveSensors describes the discharge and charge curve entities.
func CurveSensors(device Device, dischargeEntity, chargeEntity string) []GenericSensor {

	var sensors []GenericSensor

	dischargeId := ObjectId(dischargeEntity)
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                dischargeId,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              FRIENDLY_NAME_DISCHARGE,
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: UNIT_PERCENT,
		Icon:              ICON_EFFICIENCY_CURVE,
		UniqueId:          uniqueId(device.Id, dischargeId),
		HasAttributes:     true,
	})

	chargeId := ObjectId(chargeEntity)
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                chargeId,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              FRIENDLY_NAME_CHARGE,
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: UNIT_PERCENT,
		Icon:              ICON_EFFICIENCY_CURVE,
		UniqueId:          uniqueId(device.Id, chargeId),
		HasAttributes:     true,
	})

	return sensors
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
