package check

// Unit is one piece of evidence backing a Result. Units are immutable once
// built; accessors hand out copies.
type Unit struct {
	where       string
	source      string
	specific    []string
	fingerprint map[string]string
}

// UnitOption customizes a Unit at construction time.
type UnitOption func(*Unit)

// WithSource tags the unit with a category such as "HTTP/Response/Headers".
func WithSource(source string) UnitOption {
	return func(u *Unit) {
		u.source = source
	}
}

// WithFingerprint attaches dedup data, typically a content hash.
func WithFingerprint(fp map[string]string) UnitOption {
	return func(u *Unit) {
		if len(fp) == 0 {
			return
		}
		u.fingerprint = make(map[string]string, len(fp))
		for k, v := range fp {
			u.fingerprint[k] = v
		}
	}
}

// NewUnit builds an evidence unit for the given location.
func NewUnit(where string, specific []string, opts ...UnitOption) Unit {
	u := Unit{
		where:    where,
		specific: append([]string(nil), specific...),
	}
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

func (u Unit) Where() string {
	return u.where
}

func (u Unit) Source() string {
	return u.source
}

func (u Unit) Specific() []string {
	return append([]string(nil), u.specific...)
}

func (u Unit) Fingerprint() map[string]string {
	if u.fingerprint == nil {
		return nil
	}
	out := make(map[string]string, len(u.fingerprint))
	for k, v := range u.fingerprint {
		out[k] = v
	}
	return out
}

// UnitRecord is the serializable form of a Unit.
type UnitRecord struct {
	Where       string            `json:"where" yaml:"where"`
	Source      string            `json:"source,omitempty" yaml:"source,omitempty"`
	Specific    []string          `json:"specific,omitempty" yaml:"specific,omitempty"`
	Fingerprint map[string]string `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

// Record returns the serializable view of the unit.
func (u Unit) Record() UnitRecord {
	return UnitRecord{
		Where:       u.where,
		Source:      u.source,
		Specific:    u.Specific(),
		Fingerprint: u.Fingerprint(),
	}
}
