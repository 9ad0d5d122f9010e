package protocol

import (
	"fmt"
	"sort"
)

type payloadDef struct {
	name   string
	decode func(d *decoder) (Payload, error)
}

// payloadRegistry is closed: every kind the station understands is listed
// here and nothing registers at runtime.
var payloadRegistry = map[PayloadKind]payloadDef{
	KindIdentification: {
		name: "identification",
		decode: func(d *decoder) (Payload, error) {
			name, err := d.str(MaxIdentLen)
			if err != nil {
				return nil, err
			}
			version, err := d.str(MaxIdentLen)
			if err != nil {
				return nil, err
			}
			return Identification{Name: name, Version: version}, nil
		},
	},
	KindMagnetometer: {
		name: "magnetometer",
		decode: func(d *decoder) (Payload, error) {
			v, err := d.vector()
			if err != nil {
				return nil, err
			}
			return Magnetometer{Vector3: v}, nil
		},
	},
	KindAccelerometer: {
		name: "accelerometer",
		decode: func(d *decoder) (Payload, error) {
			v, err := d.vector()
			if err != nil {
				return nil, err
			}
			return Accelerometer{Vector3: v}, nil
		},
	},
	KindTemperature: {
		name: "temperature",
		decode: func(d *decoder) (Payload, error) {
			v, err := d.varint()
			if err != nil {
				return nil, err
			}
			return Temperature{MilliCelsius: v}, nil
		},
	},
}

// Kinds lists the known payload kinds in tag order.
func Kinds() []PayloadKind {
	kinds := make([]PayloadKind, 0, len(payloadRegistry))
	for kind := range payloadRegistry {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (k PayloadKind) String() string {
	if def, ok := payloadRegistry[k]; ok {
		return def.name
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

func decodePayload(d *decoder) (Payload, error) {
	tag, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	def, ok := payloadRegistry[PayloadKind(tag)]
	if !ok {
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownPayload, tag)
	}
	return def.decode(d)
}
