package bot

import "github.com/bwmarrin/discordgo"

// MessageCommandHandler handles a prefixed text command. args holds the
// whitespace-split tokens after the command name.
type MessageCommandHandler func(s *discordgo.Session, m *discordgo.MessageCreate, args []string) error

// ComponentHandler handles a message-component interaction (e.g. a button press).
type ComponentHandler func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error

// EventHandler is a generic handler for any Discord event.
// It should be a function matching one of discordgo's handler signatures,
// e.g., func(s *discordgo.Session, m *discordgo.VoiceStateUpdate)
type EventHandler any

// ModuleDependencies provides dependencies that modules may need during initialization.
type ModuleDependencies struct {
	Config  *Config
	Session *discordgo.Session
}

// Module defines the interface that all bot modules must implement.
type Module interface {
	// Name returns the unique identifier for this module.
	Name() string

	// MessageCommands returns a map of text command names to their handlers.
	MessageCommands() map[string]MessageCommandHandler

	// ComponentHandlers returns a map of component custom IDs to their handlers.
	ComponentHandlers() map[string]ComponentHandler

	// EventHandlers returns event handlers for this module.
	// Each handler should match a discordgo handler signature.
	EventHandlers() []EventHandler

	// Init initializes the module with the provided dependencies.
	Init(deps ModuleDependencies) error

	// Shutdown gracefully shuts down the module.
	Shutdown() error
}

// ConfigurableModule is an optional interface for modules that need configuration.
// Modules implementing this interface will have LoadConfig called before Init.
type ConfigurableModule interface {
	// LoadConfig loads and validates module-specific configuration.
	// Called before Init() and before the Discord connection is established.
	// Should return an error if required configuration is missing or invalid.
	LoadConfig() error
}
