// Package dash renders the board status dashboard on the application
// core and maps button input to board actions.
package dash

// Button identifies a physical board button.
type Button int

// Board buttons.
const (
	// ButtonWake only wakes the backlight.
	ButtonWake Button = iota
	// ButtonLoad toggles the peer's synthetic test load.
	ButtonLoad
	// ButtonSync requests an immediate time sync.
	ButtonSync
)

// ButtonEvent is one debounced button press.
type ButtonEvent struct {
	Button Button
}

// Display renders the dashboard. Implementations own the panel
// hardware or a console stand-in.
type Display interface {
	Render(st Status) error
}

// Backlight controls the panel backlight.
type Backlight interface {
	Set(on bool)
}

// Haptics drives the vibration motor.
type Haptics interface {
	Pulse()
}

// ButtonSource polls pending button presses. Poll must not block.
type ButtonSource interface {
	Poll() []ButtonEvent
}

// TempSensor reads the board temperature in Celsius.
type TempSensor interface {
	ReadC() (float64, error)
}
