package powertrain

// DummyPwr stands in for unlimited power, rate and regen capability. It is finite so
// that it survives JSON encoding.
const DummyPwr = 1e15

// Dummy is an idealized powertrain with effectively infinite capability and no
// energy consumption. It is useful for isolating train-level behavior.
type Dummy struct{}

// Dummy has no components, so it never contributes a derived mass.
func (Dummy) mass() (*float64, error) { return nil, nil }
