package bot

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Bot manages the Discord bot lifecycle and module coordination.
type Bot struct {
	config     *Config
	session    *discordgo.Session
	modules    []Module
	commands   map[string]MessageCommandHandler
	components map[string]ComponentHandler
}

// NewBot creates a new Bot instance with the given configuration.
func NewBot(cfg *Config) *Bot {
	return &Bot{
		config:     cfg,
		modules:    make([]Module, 0),
		commands:   make(map[string]MessageCommandHandler),
		components: make(map[string]ComponentHandler),
	}
}

// LoadModules loads modules from the global registry.
func (b *Bot) LoadModules() {
	b.modules = Modules()
}

// Start initializes the bot, connects to Discord, and registers handlers.
func (b *Bot) Start() error {
	// Create Discord session
	session, err := discordgo.New("Bot " + b.config.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates
	b.session = session

	// Load module configuration before anything talks to Discord
	if err := b.loadModuleConfigs(); err != nil {
		return fmt.Errorf("failed to load module config: %w", err)
	}

	// Initialize modules
	if err := b.initModules(); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}

	// Build routing tables
	b.buildRoutes()

	// Register gateway handlers
	b.session.AddHandler(b.handleMessage)
	b.session.AddHandler(b.handleInteraction)
	b.registerEventHandlers()

	// Open connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("started bot",
		"user_id", b.session.State.User.ID,
		"username", b.session.State.User.Username,
		"prefix", b.config.CommandPrefix,
	)

	return nil
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() error {
	// Shutdown modules first so they can tear down live sessions
	// while the gateway connection is still usable.
	for _, mod := range b.modules {
		if err := mod.Shutdown(); err != nil {
			slog.Warn("failed to shutdown module", "module", mod.Name(), "error", err)
		}
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// loadModuleConfigs calls LoadConfig on modules that want configuration.
func (b *Bot) loadModuleConfigs() error {
	for _, mod := range b.modules {
		cm, ok := mod.(ConfigurableModule)
		if !ok {
			continue
		}
		if err := cm.LoadConfig(); err != nil {
			return fmt.Errorf("module %s: %w", mod.Name(), err)
		}
	}
	return nil
}

// initModules initializes all loaded modules.
func (b *Bot) initModules() error {
	deps := ModuleDependencies{
		Config:  b.config,
		Session: b.session,
	}

	for _, mod := range b.modules {
		if err := mod.Init(deps); err != nil {
			return fmt.Errorf("failed to initialize %s module: %w", mod.Name(), err)
		}
		slog.Debug("initialized module", "module", mod.Name())
	}

	moduleNames := make([]string, len(b.modules))
	for i, mod := range b.modules {
		moduleNames[i] = mod.Name()
	}
	slog.Info("initialized modules", "modules", moduleNames)

	return nil
}

// buildRoutes builds the command and component routing tables.
func (b *Bot) buildRoutes() {
	for _, mod := range b.modules {
		maps.Copy(b.commands, mod.MessageCommands())
		maps.Copy(b.components, mod.ComponentHandlers())
	}
}

// registerEventHandlers registers all module event handlers with the session.
func (b *Bot) registerEventHandlers() {
	for _, mod := range b.modules {
		for _, handler := range mod.EventHandlers() {
			b.session.AddHandler(handler)
		}
	}
}

// splitCommand extracts the command name and arguments from a prefixed
// message. A message consisting of the bare prefix routes to "help".
func splitCommand(content, prefix string) (name string, args []string, ok bool) {
	if !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}

	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "help", nil, true
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// handleMessage routes prefixed text commands to the appropriate handler.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	name, args, ok := splitCommand(m.Content, b.config.CommandPrefix)
	if !ok {
		return
	}

	handler, found := b.commands[name]
	if !found {
		return
	}

	if err := handler(s, m, args); err != nil {
		slog.Error("failed to handle command", "command", name, "error", err)
		if _, err := s.ChannelMessageSend(m.ChannelID,
			"An error occurred while processing your command."); err != nil {
			slog.Error("failed to send error response", "error", err)
		}
	}
}

// handleInteraction routes component interactions to the appropriate handler.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	customID := i.MessageComponentData().CustomID
	handler, ok := b.components[customID]
	if !ok {
		slog.Warn("found no handler for component", "custom_id", customID)
		return
	}

	responder := NewDiscordResponder(s, i.Interaction)
	if err := handler(s, i, responder); err != nil {
		slog.Error("failed to handle component", "custom_id", customID, "error", err)
		if err := responder.RespondEphemeral("An error occurred while processing your request."); err != nil {
			slog.Error("failed to send error response", "error", err)
		}
	}
}
