package irc

// Commands a client sends or receives.
const (
	CmdAccount      = "ACCOUNT"      // account-notify: login state of a visible user changed.
	CmdAuthenticate = "AUTHENTICATE" // SASL exchange.
	CmdAway         = "AWAY"         // Set or clear an automatic away reply.
	CmdBatch        = "BATCH"        // IRCv3 batched message delivery.
	CmdCap          = "CAP"          // IRCv3 capability negotiation.
	CmdChgHost      = "CHGHOST"      // chghost: a visible user's ident or host changed.
	CmdError        = "ERROR"        // Fatal error from the server, usually on disconnect.
	CmdInvite       = "INVITE"       // Invite a user to a channel.
	CmdJoin         = "JOIN"         // Join a channel.
	CmdKick         = "KICK"         // Forced removal of a user from a channel.
	CmdMode         = "MODE"         // Channel or user mode change.
	CmdMonitor      = "MONITOR"      // Maintain the server-side notify list.
	CmdNames        = "NAMES"        // Request the member list of a channel.
	CmdNick         = "NICK"         // Change nickname.
	CmdNotice       = "NOTICE"       // Notice to a user or channel.
	CmdPart         = "PART"         // Leave a channel.
	CmdPass         = "PASS"         // Connection password.
	CmdPing         = "PING"         // Keepalive probe.
	CmdPong         = "PONG"         // Keepalive reply.
	CmdPrivmsg      = "PRIVMSG"      // Message to a user or channel.
	CmdQuit         = "QUIT"         // Terminate the session.
	CmdSetName      = "SETNAME"      // setname: a visible user's realname changed.
	CmdTagMsg       = "TAGMSG"       // Tags-only message.
	CmdTopic        = "TOPIC"        // Change or view a channel topic.
	CmdUser         = "USER"         // Registration: username and realname.
	CmdWhoIs        = "WHOIS"        // Query information about a user.
)

// Connection registration numerics.
const (
	RplWelcome  = "001" // "Welcome to the Internet Relay Network <nick>!<user>@<host>"
	RplYourHost = "002"
	RplCreated  = "003"
	RplMyInfo   = "004"
	RplISupport = "005" // Advertises CASEMAPPING, PREFIX, CHANMODES, ...
)

// Command reply numerics the engine consumes.
const (
	RplAway          = "301" // "<nick> :<away message>"
	RplUnAway        = "305"
	RplNowAway       = "306"
	RplWhoIsUser     = "311" // "<nick> <user> <host> * :<realname>"
	RplWhoIsServer   = "312"
	RplWhoIsIdle     = "317"
	RplEndOfWhoIs    = "318"
	RplWhoIsChannels = "319"
	RplChannelModeIs = "324" // "<channel> <mode> <mode params>"
	RplWhoIsAccount  = "330"
	RplNoTopic       = "331"
	RplTopic         = "332" // "<channel> :<topic>"
	RplWhoReply      = "352" // "<channel> <user> <host> <server> <nick> <flags> :<hop> <realname>"
	RplNamReply      = "353" // "<client> <symbol> <channel> :<prefixed nicks>"
	RplEndOfNames    = "366"
)

// Error numerics translated to user-visible notices.
const (
	ErrNoSuchNick       = "401"
	ErrNoSuchChannel    = "403"
	ErrCannotSendToChan = "404"
	ErrUnknownCommand   = "421"
	ErrErroneusNickname = "432"
	ErrNicknameInUse    = "433"
	ErrNotOnChannel     = "442"
	ErrPasswdMismatch   = "464"
	ErrYoureBanned      = "465"
	ErrChannelIsFull    = "471"
	ErrInviteOnlyChan   = "473"
	ErrBannedFromChan   = "474"
	ErrBadChannelKey    = "475"
)

// MONITOR numerics.
const (
	RplMonOnline  = "730" // "<client> :nick!user@host[,nick!user@host...]"
	RplMonOffline = "731" // "<client> :nick[,nick...]"
)

// SASL result numerics.
const (
	RplLoggedIn    = "900"
	RplSaslSuccess = "903"
	ErrSaslFail    = "904"
	ErrSaslTooLong = "905"
	ErrSaslAborted = "906"
	ErrSaslAlready = "907"
)
