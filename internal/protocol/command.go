// Package protocol defines the frames exchanged between ostruka and the
// relay: one JSON object per line.
package protocol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind names a frame type.
type Kind string

const (
	KindLogin   Kind = "login"
	KindAck     Kind = "ack"
	KindMsg     Kind = "msg"
	KindJoin    Kind = "join"
	KindLeave   Kind = "leave"
	KindListUsr Kind = "list_usr"
	KindInfo    Kind = "info"
	KindError   Kind = "error"
)

// ListOp tells whether a list_usr frame adds or removes members.
type ListOp string

const (
	OpAdd    ListOp = "add"
	OpRemove ListOp = "remove"
)

// Error is the error payload carried by ack and error frames.
type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "unknown error"
	}
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = strings.TrimSpace(e.Code)
	}
	if message == "" {
		return "unknown error"
	}
	if strings.TrimSpace(e.Code) == "" || strings.Contains(message, e.Code) {
		return message
	}
	return fmt.Sprintf("%s (%s)", message, e.Code)
}

// Command is a single frame. Which fields are meaningful depends on Cmd.
type Command struct {
	Cmd      Kind   `json:"cmd"`
	ReqID    string `json:"req_id,omitempty"`
	Sender   string `json:"sender,omitempty"`
	Target   string `json:"target,omitempty"`
	Body     string `json:"body,omitempty"`
	Op       ListOp `json:"op,omitempty"`
	Users    string `json:"users,omitempty"` // newline separated member names
	Password string `json:"password,omitempty"`
	OK       *bool  `json:"ok,omitempty"`
	Error    *Error `json:"error,omitempty"`
}

// Direction tells the network loop whether a Message must be written to the
// wire or applied to the conversation store.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// Message is one item of the transport's ordered stream.
type Message struct {
	Direction Direction
	Command   Command
}

// Login asks the relay to authenticate user.
func Login(user, password string) Command {
	return Command{Cmd: KindLogin, ReqID: newReqID(), Sender: user, Password: password}
}

// Ack accepts the request identified by reqID.
func Ack(reqID string) Command {
	ok := true
	return Command{Cmd: KindAck, ReqID: reqID, OK: &ok}
}

// Reject refuses the request identified by reqID.
func Reject(reqID, code, message string) Command {
	ok := false
	return Command{Cmd: KindAck, ReqID: reqID, OK: &ok, Error: &Error{Code: code, Message: message}}
}

// Msg carries text from sender to a user or #group.
func Msg(sender, target, body string) Command {
	return Command{Cmd: KindMsg, ReqID: newReqID(), Sender: sender, Target: target, Body: body}
}

// Join opens a conversation with a user or #group.
func Join(target string) Command {
	return Command{Cmd: KindJoin, ReqID: newReqID(), Target: target}
}

// Leave closes a conversation.
func Leave(target string) Command {
	return Command{Cmd: KindLeave, ReqID: newReqID(), Target: target}
}

// ListUsrQuery requests the online members of group. The relay answers with
// a ListUsr add frame listing everyone.
func ListUsrQuery(group string) Command {
	return Command{Cmd: KindListUsr, ReqID: newReqID(), Target: group, Op: OpAdd}
}

// ListUsr reports a roster delta for group.
func ListUsr(group string, op ListOp, users []string) Command {
	return Command{Cmd: KindListUsr, Target: group, Op: op, Users: JoinMembers(users)}
}

// Info is a status line from the relay.
func Info(format string, args ...any) Command {
	return Command{Cmd: KindInfo, Body: fmt.Sprintf(format, args...)}
}

// Errorf is an error frame from the relay.
func Errorf(code, format string, args ...any) Command {
	return Command{Cmd: KindError, Error: &Error{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// String renders frames that are shown verbatim in the current page.
func (c Command) String() string {
	switch c.Cmd {
	case KindMsg:
		return fmt.Sprintf("[%s]: %s", c.Sender, c.Body)
	case KindJoin:
		return fmt.Sprintf("[INFO]: %s joined %s", c.Sender, c.Target)
	case KindLeave:
		return fmt.Sprintf("[INFO]: %s left %s", c.Sender, c.Target)
	case KindListUsr:
		return fmt.Sprintf("[INFO]: %s %s %s", c.Target, c.Op, strings.Join(SplitMembers(c.Users), ", "))
	case KindInfo:
		return "[INFO]: " + c.Body
	case KindError:
		if c.Error != nil {
			return "[SERVER ERR]: " + c.Error.Error()
		}
		return "[SERVER ERR]: " + c.Body
	case KindAck:
		if c.OK != nil && !*c.OK {
			return "[SERVER ERR]: " + c.Error.Error()
		}
		return "[OK]"
	default:
		return fmt.Sprintf("[%s]: %s", c.Cmd, c.Body)
	}
}

// SplitMembers splits a newline separated member list, dropping the empty
// segments the relay sometimes produces.
func SplitMembers(users string) []string {
	var out []string
	for _, name := range strings.Split(users, "\n") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}

// JoinMembers is the inverse of SplitMembers.
func JoinMembers(users []string) string {
	return strings.Join(users, "\n")
}

func newReqID() string {
	return uuid.NewString()
}
