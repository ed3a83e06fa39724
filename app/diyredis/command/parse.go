package command

import (
	"strconv"
	"strings"

	"redikv/app/diyredis/store"
)

type parser func(args []string) (Command, error)

// parsers is the command-name -> parser registry the original implementation
// this spec was distilled from also used: Parse uppercases the command name
// and dispatches through this map rather than a long if/else chain.
var parsers = map[string]parser{
	"PING":     parsePing,
	"ECHO":     parseEcho,
	"SET":      parseSet,
	"GET":      parseGet,
	"INCR":     parseIncr,
	"RPUSH":    parseRPush,
	"LPUSH":    parseLPush,
	"LRANGE":   parseLRange,
	"LLEN":     parseLLen,
	"LPOP":     parseLPop,
	"BLPOP":    parseBLPop,
	"TYPE":     parseType,
	"XADD":     parseXAdd,
	"XRANGE":   parseXRange,
	"XREAD":    parseXRead,
	"MULTI":    parseMulti,
	"EXEC":     parseExec,
	"DISCARD":  parseDiscard,
	"REPLCONF": parseReplConf,
	"PSYNC":    parsePsync,
}

// Parse dispatches a decoded RESP array (name plus arguments, both already
// extracted as strings) to its command parser. name is matched
// case-insensitively; the reported error message preserves the client's
// original casing, matching redis-server's own error text.
func Parse(name string, args []string) (Command, error) {
	p, ok := parsers[strings.ToUpper(name)]
	if !ok {
		return nil, &ParseError{Message: "unknown command '" + name + "'"}
	}
	return p(args)
}

func arityErr(name string) error {
	return &ParseError{Message: "wrong number of arguments for '" + name + "' command"}
}

func parsePing(args []string) (Command, error) {
	if len(args) > 0 {
		return nil, arityErr("ping")
	}
	return Ping{}, nil
}

func parseEcho(args []string) (Command, error) {
	if len(args) != 1 {
		return nil, arityErr("echo")
	}
	return Echo{Message: args[0]}, nil
}

func parseSet(args []string) (Command, error) {
	if len(args) < 2 {
		return nil, arityErr("set")
	}
	cmd := Set{Key: args[0], Value: args[1]}

	switch {
	case len(args) >= 4:
		opt := strings.ToUpper(args[2])
		n, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return nil, &ParseError{Message: "invalid expiry value"}
		}
		switch opt {
		case "EX":
			cmd.HasExpiry = true
			cmd.ExpiryMS = n * 1000
		case "PX":
			cmd.HasExpiry = true
			cmd.ExpiryMS = n
		default:
			return nil, &ParseError{Message: "syntax error"}
		}
	case len(args) == 3:
		return nil, &ParseError{Message: "syntax error"}
	}
	return cmd, nil
}

func parseGet(args []string) (Command, error) {
	if len(args) != 1 {
		return nil, arityErr("get")
	}
	return Get{Key: args[0]}, nil
}

func parseIncr(args []string) (Command, error) {
	if len(args) != 1 {
		return nil, arityErr("incr")
	}
	return Incr{Key: args[0]}, nil
}

func parseRPush(args []string) (Command, error) {
	if len(args) < 2 {
		return nil, arityErr("rpush")
	}
	return RPush{Key: args[0], Values: append([]string(nil), args[1:]...)}, nil
}

func parseLPush(args []string) (Command, error) {
	if len(args) < 2 {
		return nil, arityErr("lpush")
	}
	return LPush{Key: args[0], Values: append([]string(nil), args[1:]...)}, nil
}

// parseLRange requires exactly 3 arguments. The reference implementation
// only checks len(args) < 2 and then reads args[2] unconditionally — a bug
// that panics (or reads garbage) on a missing stop index. spec.md §9 flags
// this explicitly: treat a missing stop as an arity error instead.
func parseLRange(args []string) (Command, error) {
	if len(args) != 3 {
		return nil, arityErr("lrange")
	}
	start, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return nil, &ParseError{Message: "value is not an integer or out of range"}
	}
	stop, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return nil, &ParseError{Message: "value is not an integer or out of range"}
	}
	return LRange{Key: args[0], Start: start, Stop: stop}, nil
}

func parseLLen(args []string) (Command, error) {
	if len(args) != 1 {
		return nil, arityErr("llen")
	}
	return LLen{Key: args[0]}, nil
}

func parseLPop(args []string) (Command, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, arityErr("lpop")
	}
	cmd := LPop{Key: args[0]}
	if len(args) == 2 {
		count, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, &ParseError{Message: "count must be an integer"}
		}
		if count <= 0 {
			return nil, &ParseError{Message: "count must be positive"}
		}
		cmd.HasCount = true
		cmd.Count = count
	}
	return cmd, nil
}

func parseBLPop(args []string) (Command, error) {
	if len(args) != 2 {
		return nil, arityErr("blpop")
	}
	timeout, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return nil, &ParseError{Message: "timeout is not a float or out of range"}
	}
	return BLPop{Key: args[0], TimeoutSeconds: timeout}, nil
}

func parseType(args []string) (Command, error) {
	if len(args) != 1 {
		return nil, arityErr("type")
	}
	return Type{Key: args[0]}, nil
}

func parseXAdd(args []string) (Command, error) {
	if len(args) < 3 {
		return nil, arityErr("xadd")
	}

	cmd := XAdd{Key: args[0]}
	idStr := args[1]

	if idStr == "*" {
		cmd.AutoMS, cmd.AutoSeq = true, true
	} else {
		dash := strings.IndexByte(idStr, '-')
		if dash == -1 {
			return nil, store.ErrBadStreamID
		}
		ms, err := strconv.ParseUint(idStr[:dash], 10, 64)
		if err != nil {
			return nil, store.ErrBadStreamID
		}
		cmd.MS = ms
		if rest := idStr[dash+1:]; rest == "*" {
			cmd.AutoSeq = true
		} else {
			seq, err := strconv.ParseUint(rest, 10, 64)
			if err != nil {
				return nil, store.ErrBadStreamID
			}
			cmd.Seq = seq
		}
	}

	fieldArgs := args[2:]
	if len(fieldArgs)%2 != 0 {
		return nil, &ParseError{Message: "wrong number of arguments for 'xadd' command"}
	}
	fields := make([]store.FieldPair, 0, len(fieldArgs)/2)
	for i := 0; i < len(fieldArgs); i += 2 {
		fields = append(fields, store.FieldPair{Name: fieldArgs[i], Value: fieldArgs[i+1]})
	}
	cmd.Fields = fields
	return cmd, nil
}

func parseXRangeBound(s string, isStart bool) (store.StreamID, error) {
	switch s {
	case "-":
		return store.MinStreamID, nil
	case "+":
		return store.MaxStreamID, nil
	}
	ms, seq, hasSeq, err := store.ParseStreamID(s)
	if err != nil {
		return store.StreamID{}, err
	}
	if !hasSeq {
		if isStart {
			seq = 0
		} else {
			seq = store.MaxStreamID.Seq
		}
	}
	return store.StreamID{MS: ms, Seq: seq}, nil
}

func parseXRange(args []string) (Command, error) {
	if len(args) != 3 {
		return nil, arityErr("xrange")
	}
	start, err := parseXRangeBound(args[1], true)
	if err != nil {
		return nil, err
	}
	end, err := parseXRangeBound(args[2], false)
	if err != nil {
		return nil, err
	}
	return XRange{Key: args[0], Start: start, End: end}, nil
}

func parseXRead(args []string) (Command, error) {
	if len(args) < 3 {
		return nil, arityErr("xread")
	}

	cmd := XRead{}
	offset := 0
	if strings.EqualFold(args[0], "BLOCK") {
		if len(args) < 2 {
			return nil, &ParseError{Message: "syntax error"}
		}
		ms, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, &ParseError{Message: "invalid BLOCK timeout"}
		}
		cmd.HasBlock = true
		cmd.BlockMS = ms
		offset = 2
	}

	streamsIdx := -1
	for i := offset; i < len(args); i++ {
		if strings.EqualFold(args[i], "STREAMS") {
			streamsIdx = i
			break
		}
	}
	if streamsIdx == -1 {
		return nil, &ParseError{Message: "syntax error"}
	}

	rest := args[streamsIdx+1:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return nil, arityErr("xread")
	}
	n := len(rest) / 2
	keys, ids := rest[:n], rest[n:]

	cmd.Streams = make([]XReadStream, n)
	for i := range keys {
		if ids[i] == "$" {
			cmd.Streams[i] = XReadStream{Key: keys[i], FromLast: true}
			continue
		}
		ms, seq, hasSeq, err := store.ParseStreamID(ids[i])
		if err != nil {
			return nil, err
		}
		if !hasSeq {
			seq = 0
		}
		cmd.Streams[i] = XReadStream{Key: keys[i], After: store.StreamID{MS: ms, Seq: seq}}
	}
	return cmd, nil
}

func parseMulti(args []string) (Command, error) {
	if len(args) > 0 {
		return nil, arityErr("multi")
	}
	return Multi{}, nil
}

func parseExec(args []string) (Command, error) {
	if len(args) > 0 {
		return nil, arityErr("exec")
	}
	return Exec{}, nil
}

func parseDiscard(args []string) (Command, error) {
	if len(args) > 0 {
		return nil, arityErr("discard")
	}
	return Discard{}, nil
}

func parseReplConf(args []string) (Command, error) {
	return ReplConf{Args: append([]string(nil), args...)}, nil
}

func parsePsync(args []string) (Command, error) {
	return Psync{}, nil
}
