package constants

import "time"

// DefaultConversationTitle is the title every new conversation starts with.
const DefaultConversationTitle = "New Chat"

// DefaultPersona is the student bound to conversations created from the UI.
const DefaultPersona = "AI"

// PersonaPromptTemplate builds the system prompt for a student that has no
// custom prompt. %[1]s is the student name.
const PersonaPromptTemplate = `You are %[1]s, a student from Blue Archive, and you should stay true to the character.
Keep the persona consistent and talk with the user in a friendly way.
Show %[1]s's personality and manner of speaking throughout the conversation.
Remember that this is a private chat with the user, so be warm and familiar.`

// DefaultPageSize is the number of messages fetched per history page.
const DefaultPageSize = 20

// DefaultNearBottomThreshold is the distance below which a viewport counts as
// scrolled to the bottom.
const DefaultNearBottomThreshold = 100

// DefaultScrollThresholdLines is the terminal rendition of the near-bottom
// threshold, measured in lines.
const DefaultScrollThresholdLines = 3

// HistoryLoadConcurrency bounds the parallel history fetches during a conversation list load.
const HistoryLoadConcurrency = 4

// MergedUserSeparator joins a trailing run of user messages before generation.
const MergedUserSeparator = "\n"

// MergedRoleSeparator joins consecutive same-role messages before generation.
const MergedRoleSeparator = "\n\n"

// MinEventBusBufferSize is the minimum buffer per subscriber channel.
const MinEventBusBufferSize = 256

// EventBusPublishTimeout is the per-subscriber timeout for critical events.
const EventBusPublishTimeout = 200 * time.Millisecond

// StopTimeout caps how long shutdown waits for an in-flight generation to unwind.
const StopTimeout = 5 * time.Second

// RPCWriteTimeout caps a single websocket frame write.
const RPCWriteTimeout = 10 * time.Second

// SettingAPIKey is the settings key holding the LLM API key.
const SettingAPIKey = "apiKey"

// SettingTheme is the settings key holding the theme preference.
const SettingTheme = "theme"
