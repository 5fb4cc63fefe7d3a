package network

// 消息ID
const (
	MsgTypeHeartbeat = 1

	// 客户端 -> 服务器
	MsgTypeNightAction = 201
	MsgTypeNominate    = 202
	MsgTypeStartGame   = 203
	MsgTypeTallyVotes  = 204
	MsgTypeExitRoom    = 205

	// 服务器 -> 客户端
	MsgTypeStateUpdated       = 301
	MsgTypePlayerKilled       = 302
	MsgTypePoliceWinAnnounced = 303
	MsgTypeGameEnded          = 304
	MsgTypeGameStarted        = 305
	MsgTypePlayerJoined       = 306
	MsgTypePlayerExited       = 307

	MsgTypeError = 400
)

// ActionRequest is the JSON body of client action packets. Action is only
// read for MsgTypeNightAction ("kill" or "guess").
type ActionRequest struct {
	Action string `json:"action,omitempty"`
	Target string `json:"target,omitempty"`
}

// ErrorMessage is the body of a MsgTypeError packet.
type ErrorMessage struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
