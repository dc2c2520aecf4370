package wire

// Frontend (client -> server) message type tags.
const (
	TagBind             byte = 'B'
	TagClose            byte = 'C'
	TagCopyData         byte = 'd'
	TagCopyDone         byte = 'c'
	TagCopyFail         byte = 'f'
	TagDescribe         byte = 'D'
	TagExecute          byte = 'E'
	TagFlush            byte = 'H'
	TagParse            byte = 'P'
	TagPasswordMessage  byte = 'p'
	TagQuery            byte = 'Q'
	TagSASLInitialResp  byte = 'p'
	TagSASLResponse     byte = 'p'
	TagSync             byte = 'S'
	TagTerminate        byte = 'X'
)

// Backend (server -> client) message type tags.
const (
	TagAuthentication      byte = 'R'
	TagBackendKeyData      byte = 'K'
	TagBindComplete        byte = '2'
	TagCloseComplete       byte = '3'
	TagCommandComplete     byte = 'C'
	TagCopyInResponse      byte = 'G'
	TagCopyOutResponse     byte = 'H'
	TagCopyBothResponse    byte = 'W'
	TagDataRow             byte = 'D'
	TagEmptyQueryResponse  byte = 'I'
	TagErrorResponse       byte = 'E'
	TagNegotiateProtoVer   byte = 'v'
	TagNoData              byte = 'n'
	TagNoticeResponse      byte = 'N'
	TagNotificationResp    byte = 'A'
	TagParameterDescr      byte = 't'
	TagParameterStatus     byte = 'S'
	TagParseComplete       byte = '1'
	TagPortalSuspended     byte = 's'
	TagReadyForQuery       byte = 'Z'
	TagRowDescription      byte = 'T'
)

// Which target a Close/Describe message names.
const (
	WhichStatement byte = 'S'
	WhichPortal    byte = 'P'
)

// Authentication sub-message status codes (carried in an 'R' message body).
const (
	AuthOK                int32 = 0
	AuthKerberosV5        int32 = 2
	AuthCleartextPassword int32 = 3
	AuthMD5Password       int32 = 5
	AuthSCMCredential     int32 = 6
	AuthGSS               int32 = 7
	AuthGSSContinue       int32 = 8
	AuthSSPI              int32 = 9
	AuthSASL              int32 = 10
	AuthSASLContinue      int32 = 11
	AuthSASLFinal         int32 = 12
)

// Transaction status bytes carried by ReadyForQuery.
const (
	TxIdle   byte = 'I'
	TxActive byte = 'T'
	TxFailed byte = 'E'
)
