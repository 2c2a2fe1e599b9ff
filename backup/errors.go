package backup

import "errors"

var (
	ErrManifestCorrupt  = errors.New("backup: manifest corrupt or checksum mismatch")
	ErrUnsupportedCodec = errors.New("backup: unsupported codec")
	ErrTablespaceExists = errors.New("backup: a tablespace with the restore target name already exists")
)

func IsManifestCorrupt(err error) bool  { return errors.Is(err, ErrManifestCorrupt) }
func IsUnsupportedCodec(err error) bool { return errors.Is(err, ErrUnsupportedCodec) }
func IsTablespaceExists(err error) bool { return errors.Is(err, ErrTablespaceExists) }
