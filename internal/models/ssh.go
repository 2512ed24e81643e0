package models

// SSHConfig holds the connection settings for a server on a remote host.
type SSHConfig struct {
	Host       string
	Port       int
	Username   string
	PrivateKey []byte // loaded from file path
	KeyPath    string // path to key file
}

// SSHResult holds the result of a remote command.
type SSHResult struct {
	CommandRun bool
	ExitStatus int
	Output     string
	Error      error
}
