package wire

import "fmt"

// Authentication is the parsed body of an 'R' message. Status selects which
// of the optional fields, if any, are populated.
type Authentication struct {
	Status int32
	// SASLMechanisms is populated when Status == AuthSASL: the server's
	// advertised mechanism list, NUL-terminated strings terminated by an
	// empty string.
	SASLMechanisms []string
	// Data carries the AuthenticationSASLContinue / AuthenticationSASLFinal
	// payload when Status is AuthSASLContinue or AuthSASLFinal.
	Data []byte
}

// DecodeAuthentication parses an Authentication message body.
func DecodeAuthentication(body []byte) (*Authentication, error) {
	c := NewCursor(body)
	status, err := c.Int32()
	if err != nil {
		return nil, err
	}
	a := &Authentication{Status: status}
	switch status {
	case AuthSASL:
		for {
			s, err := c.CString()
			if err != nil {
				return nil, err
			}
			if s == "" {
				break
			}
			a.SASLMechanisms = append(a.SASLMechanisms, s)
		}
	case AuthSASLContinue, AuthSASLFinal:
		a.Data = c.Bytes()
	}
	return a, nil
}

// BackendKeyData carries the process ID and secret key used for CancelRequest.
type BackendKeyData struct {
	ProcessID int32
	SecretKey int32
}

// DecodeBackendKeyData parses a 'K' message body.
func DecodeBackendKeyData(body []byte) (*BackendKeyData, error) {
	c := NewCursor(body)
	pid, err := c.Int32()
	if err != nil {
		return nil, err
	}
	secret, err := c.Int32()
	if err != nil {
		return nil, err
	}
	return &BackendKeyData{ProcessID: pid, SecretKey: secret}, nil
}

// ParameterStatus carries one runtime-parameter announcement.
type ParameterStatus struct {
	Name  string
	Value string
}

// DecodeParameterStatus parses an 'S' message body.
func DecodeParameterStatus(body []byte) (*ParameterStatus, error) {
	c := NewCursor(body)
	name, err := c.CString()
	if err != nil {
		return nil, err
	}
	value, err := c.CString()
	if err != nil {
		return nil, err
	}
	return &ParameterStatus{Name: name, Value: value}, nil
}

// ReadyForQuery carries the post-command transaction status.
type ReadyForQuery struct {
	TxStatus byte
}

// DecodeReadyForQuery parses a 'Z' message body.
func DecodeReadyForQuery(body []byte) (*ReadyForQuery, error) {
	c := NewCursor(body)
	status, err := c.Byte()
	if err != nil {
		return nil, err
	}
	return &ReadyForQuery{TxStatus: status}, nil
}

// RowDescription lists the shape of the rows in the next DataRow sequence.
type RowDescription struct {
	Columns []ColumnDescription
}

// ColumnDescription describes one result column.
type ColumnDescription struct {
	Name         string
	TableOID     int32
	ColumnAttr   int16
	DataTypeOID  int32
	DataTypeSize int16
	TypeModifier int32
	FormatCode   int16
}

// DecodeRowDescription parses a 'T' message body.
func DecodeRowDescription(body []byte) (*RowDescription, error) {
	c := NewCursor(body)
	rd := &RowDescription{}
	_, err := c.Array(func(int) error {
		name, err := c.CString()
		if err != nil {
			return err
		}
		col := ColumnDescription{Name: name}
		if col.TableOID, err = c.Int32(); err != nil {
			return err
		}
		if col.ColumnAttr, err = c.Int16(); err != nil {
			return err
		}
		if col.DataTypeOID, err = c.Int32(); err != nil {
			return err
		}
		if col.DataTypeSize, err = c.Int16(); err != nil {
			return err
		}
		if col.TypeModifier, err = c.Int32(); err != nil {
			return err
		}
		if col.FormatCode, err = c.Int16(); err != nil {
			return err
		}
		rd.Columns = append(rd.Columns, col)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// DataRow carries one row's worth of text-encoded (or NULL) column values.
type DataRow struct {
	Values [][]byte
}

// DecodeDataRow parses a 'D' message body.
func DecodeDataRow(body []byte) (*DataRow, error) {
	c := NewCursor(body)
	dr := &DataRow{}
	_, err := c.Array(func(int) error {
		v, err := c.BytesLP()
		if err != nil {
			return err
		}
		dr.Values = append(dr.Values, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dr, nil
}

// CommandComplete carries the terminal command tag, e.g. "INSERT 0 1".
type CommandComplete struct {
	Tag string
}

// DecodeCommandComplete parses a 'C' message body.
func DecodeCommandComplete(body []byte) (*CommandComplete, error) {
	c := NewCursor(body)
	tag, err := c.CString()
	if err != nil {
		return nil, err
	}
	return &CommandComplete{Tag: tag}, nil
}

// ParameterDescription lists the inferred/declared OID of each statement
// parameter, in the order Parse's $N placeholders appear.
type ParameterDescription struct {
	OIDs []int32
}

// DecodeParameterDescription parses a 't' message body.
func DecodeParameterDescription(body []byte) (*ParameterDescription, error) {
	oids, err := NewCursor(body).OIDArray()
	if err != nil {
		return nil, err
	}
	return &ParameterDescription{OIDs: oids}, nil
}

// NotificationResponse carries one LISTEN/NOTIFY delivery.
type NotificationResponse struct {
	ProcessID int32
	Channel   string
	Payload   string
}

// DecodeNotificationResponse parses an 'A' message body.
func DecodeNotificationResponse(body []byte) (*NotificationResponse, error) {
	c := NewCursor(body)
	pid, err := c.Int32()
	if err != nil {
		return nil, err
	}
	channel, err := c.CString()
	if err != nil {
		return nil, err
	}
	payload, err := c.CString()
	if err != nil {
		return nil, err
	}
	return &NotificationResponse{ProcessID: pid, Channel: channel, Payload: payload}, nil
}

// NegotiateProtocolVersion carries the server's downgraded protocol
// version and any startup parameters it did not recognize.
type NegotiateProtocolVersion struct {
	MinorVersion     int32
	UnrecognizedOpts []string
}

// DecodeNegotiateProtocolVersion parses a 'v' message body.
func DecodeNegotiateProtocolVersion(body []byte) (*NegotiateProtocolVersion, error) {
	c := NewCursor(body)
	minor, err := c.Int32()
	if err != nil {
		return nil, err
	}
	n := &NegotiateProtocolVersion{MinorVersion: minor}
	_, err = c.Array(func(int) error {
		s, err := c.CString()
		if err != nil {
			return err
		}
		n.UnrecognizedOpts = append(n.UnrecognizedOpts, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ErrorFields is the parsed field set of an ErrorResponse or NoticeResponse,
// keyed by the protocol's single-letter field codes (PostgreSQL protocol
// docs §55.7.4). Field access happens through the named accessors below.
type ErrorFields map[byte]string

// DecodeErrorFields parses the letter-tagged, NUL-terminated field list
// shared by 'E' and 'N' messages, itself terminated by a bare 0 byte.
func DecodeErrorFields(body []byte) (ErrorFields, error) {
	c := NewCursor(body)
	fields := ErrorFields{}
	for {
		tag, err := c.Byte()
		if err != nil {
			return nil, err
		}
		if tag == 0 {
			return fields, nil
		}
		val, err := c.CString()
		if err != nil {
			return nil, fmt.Errorf("wire: error field '%c': %w", tag, err)
		}
		fields[tag] = val
	}
}

func (f ErrorFields) Severity() string   { return f.orDefault('S', "ERROR") }
func (f ErrorFields) Code() string       { return f.orDefault('C', "XX000") }
func (f ErrorFields) Message() string    { return f['M'] }
func (f ErrorFields) Detail() string     { return f['D'] }
func (f ErrorFields) Hint() string       { return f['H'] }
func (f ErrorFields) Position() string   { return f['P'] }
func (f ErrorFields) Where() string      { return f['W'] }
func (f ErrorFields) Schema() string     { return f['s'] }
func (f ErrorFields) Table() string      { return f['t'] }
func (f ErrorFields) Column() string     { return f['c'] }
func (f ErrorFields) DataType() string   { return f['d'] }
func (f ErrorFields) Constraint() string { return f['n'] }
func (f ErrorFields) File() string       { return f['F'] }
func (f ErrorFields) Line() string       { return f['L'] }
func (f ErrorFields) Routine() string    { return f['R'] }

func (f ErrorFields) orDefault(tag byte, def string) string {
	if v, ok := f[tag]; ok {
		return v
	}
	return def
}
