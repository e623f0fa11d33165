package s3

import (
	"errors"
	"fmt"
	"io"
)

// ReachLimitError 表示上傳內容超過允許的大小
type ReachLimitError struct {
	MaxBytes int64
}

func (e *ReachLimitError) Error() string {
	return fmt.Sprintf("reach limit of %s", FormatBytes(e.MaxBytes))
}

// IsReachLimit 判斷 err 是否為 ReachLimitError
func IsReachLimit(err error) bool {
	var target *ReachLimitError
	return errors.As(err, &target)
}

// NewMaxSizeReader 包裝 r，讀到第 maxSize+1 個 byte 時回傳 ReachLimitError
func NewMaxSizeReader(r io.Reader, maxSize int64) io.Reader {
	return &maxSizeReader{reader: r, limit: maxSize, remaining: maxSize}
}

// ReadAllLimited 讀取全部內容，超過 maxSize 時回傳 ReachLimitError
func ReadAllLimited(r io.Reader, maxSize int64) ([]byte, error) {
	return io.ReadAll(NewMaxSizeReader(r, maxSize))
}

type maxSizeReader struct {
	reader    io.Reader
	limit     int64
	remaining int64
}

func (r *maxSizeReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	// 多讀一個 byte 才能分辨「剛好等於上限」和「超過上限」
	if int64(len(p)) > r.remaining+1 {
		p = p[:r.remaining+1]
	}
	n, err := r.reader.Read(p)
	if int64(n) <= r.remaining {
		r.remaining -= int64(n)
		return n, err
	}

	n = int(r.remaining)
	r.remaining = 0
	return n, &ReachLimitError{MaxBytes: r.limit}
}
