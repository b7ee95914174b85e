package ipc

import (
	"errors"
	"regexp"
	"strings"
)

// Named contract errors the SDK reacts to.
var (
	ErrBucketAlreadyExists = errors.New("BucketAlreadyExists")
	ErrBucketNonexists     = errors.New("BucketNonexists")
	ErrBucketNonempty      = errors.New("BucketNonempty")
	ErrFileAlreadyExists   = errors.New("FileAlreadyExists")
	ErrFileNonexists       = errors.New("FileNonexists")
	ErrFileFullyUploaded   = errors.New("FileFullyUploaded")
	ErrBlockAlreadyExists  = errors.New("BlockAlreadyExists")
	ErrBlockNonexists      = errors.New("BlockNonexists")
	ErrNonceAlreadyUsed    = errors.New("NonceAlreadyUsed")
	ErrOffsetOutOfBounds   = errors.New("OffsetOutOfBounds")
)

// selectorErrors maps 4-byte revert selectors to the contract error names
// they encode.
var selectorErrors = map[string]error{
	"0x497ef2c2": ErrBucketAlreadyExists,
	"0x4f4b202a": errors.New("BucketInvalid"),
	"0xdc64d0ad": errors.New("BucketInvalidOwner"),
	"0x938a92b7": ErrBucketNonexists,
	"0x89fddc00": ErrBucketNonempty,
	"0x6891dde0": ErrFileAlreadyExists,
	"0x77a3cbd8": errors.New("FileInvalid"),
	"0x21584586": ErrFileNonexists,
	"0xc4a3b6f1": errors.New("FileNonempty"),
	"0xd09ec7af": errors.New("FileNameDuplicate"),
	"0xd96b03b1": ErrFileFullyUploaded,
	"0x702cf740": errors.New("FileChunkDuplicate"),
	"0xc1edd16a": ErrBlockAlreadyExists,
	"0xcb20e88c": errors.New("BlockInvalid"),
	"0x15123121": ErrBlockNonexists,
	"0x856b300d": errors.New("InvalidArrayLength"),
	"0x17ec8370": errors.New("InvalidFileBlocksCount"),
	"0x5660ebd2": errors.New("InvalidLastBlockSize"),
	"0x1b6fdfeb": errors.New("InvalidEncodedSize"),
	"0xfe33db92": errors.New("InvalidFileCID"),
	"0x37c7f255": errors.New("IndexMismatch"),
	"0xcefa6b05": errors.New("NoPolicy"),
	"0x5c371e92": errors.New("FileNotFilled"),
	"0xdad01942": errors.New("BlockAlreadyFilled"),
	"0x4b6b8ec8": errors.New("ChunkCIDMismatch"),
	"0x0d6b18f0": errors.New("NotBucketOwner"),
	"0xc4c1a0c5": errors.New("BucketNotFound"),
	"0x3bcbb0de": errors.New("FileDoesNotExist"),
	"0xa2c09fea": errors.New("NotThePolicyOwner"),
	"0x94289054": errors.New("CloneArgumentsTooLong"),
	"0x4ca249dc": errors.New("Create2EmptyBytecode"),
	"0xf3714a9b": errors.New("ECDSAInvalidSignatureS"),
	"0x367e2e27": errors.New("ECDSAInvalidSignatureLength"),
	"0xf645eedf": errors.New("ECDSAInvalidSignature"),
	"0xb73e95e1": errors.New("AlreadyWhitelisted"),
	"0xe6c4247b": errors.New("InvalidAddress"),
	"0x584a7938": errors.New("NotWhitelisted"),
	"0x227bc153": errors.New("MathOverflowedMulDiv"),
	"0xe7b199a6": errors.New("InvalidBlocksAmount"),
	"0x59b452ef": errors.New("InvalidBlockIndex"),
	"0x55cbc831": errors.New("LastChunkDuplicate"),
	"0x2abde339": errors.New("FileNotExists"),
	"0x48e0ed68": errors.New("NotSignedByBucketOwner"),
	"0x923b8cbb": ErrNonceAlreadyUsed,
	"0x9605a010": ErrOffsetOutOfBounds,
}

var selectorPattern = regexp.MustCompile(`0x[a-fA-F0-9]{8}`)

// ErrorFromSelector maps a revert error carrying a 4-byte selector to its
// named contract error. Errors without a known selector pass through
// unchanged.
func ErrorFromSelector(err error) error {
	if err == nil {
		return nil
	}
	match := strings.ToLower(selectorPattern.FindString(err.Error()))
	if match == "" {
		return err
	}
	if named, ok := selectorErrors[match]; ok {
		return named
	}
	return err
}

// IgnoreOffsetError clears OffsetOutOfBounds reverts, which the upload path
// treats as benign, and passes everything else through.
func IgnoreOffsetError(err error) error {
	if errors.Is(ErrorFromSelector(err), ErrOffsetOutOfBounds) {
		return nil
	}
	return err
}
