package browser

// Config holds browser launch configuration.
type Config struct {
	// Headless starts the browser without a window. The install flow
	// forces this off so the user can log in interactively.
	Headless bool `json:"headless" mapstructure:"headless"`

	// UserDataDir is the persistent profile directory holding the login
	// cookies. Defaults under the OS temp dir.
	UserDataDir string `json:"user_data_dir" mapstructure:"user_data_dir"`

	// ChromePath overrides the browser binary.
	ChromePath string `json:"chrome_path,omitempty" mapstructure:"chrome_path"`

	// NoSandbox disables the Chromium sandbox (needed in some
	// containers).
	NoSandbox bool `json:"no_sandbox" mapstructure:"no_sandbox"`

	// ProxyServer is passed to the browser as its network proxy.
	ProxyServer string `json:"proxy_server,omitempty" mapstructure:"proxy_server"`
}

// BrowserError is a coded browser lifecycle error.
type BrowserError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *BrowserError) Error() string {
	return e.Message
}

// Error codes
const (
	ErrCodeLaunch        = "LAUNCH_ERROR"
	ErrCodeNavigation    = "NAVIGATION_ERROR"
	ErrCodeScript        = "SCRIPT_EXECUTION_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
)
