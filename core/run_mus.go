package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// RunRecordMUS encodes RunRecord in MUS format. Times are stored as Unix
// microseconds in UTC.
var RunRecordMUS = runRecordMUS{}

type runRecordMUS struct{}

func (s runRecordMUS) Marshal(v RunRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.ExecutionID, bs)
	n += ord.String.Marshal(v.DocumentID, bs[n:])
	n += ord.String.Marshal(v.Bucket, bs[n:])
	n += ord.String.Marshal(v.Key, bs[n:])
	n += ord.String.Marshal(v.State, bs[n:])
	n += ord.String.Marshal(string(v.FailedStage), bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	n += varint.Int.Marshal(len(v.Transitions), bs[n:])
	for _, t := range v.Transitions {
		n += ord.String.Marshal(t.State, bs[n:])
		n += varint.Int64.Marshal(unixMicro(t.At), bs[n:])
	}
	n += varint.Int.Marshal(len(v.Attempts), bs[n:])
	for _, a := range v.Attempts {
		n += ord.String.Marshal(string(a.Stage), bs[n:])
		n += varint.Int.Marshal(a.Attempts, bs[n:])
	}
	n += varint.Int64.Marshal(unixMicro(v.StartedAt), bs[n:])
	n += varint.Int64.Marshal(unixMicro(v.UpdatedAt), bs[n:])
	return
}

func (s runRecordMUS) Size(v RunRecord) (size int) {
	size = ord.String.Size(v.ExecutionID)
	size += ord.String.Size(v.DocumentID)
	size += ord.String.Size(v.Bucket)
	size += ord.String.Size(v.Key)
	size += ord.String.Size(v.State)
	size += ord.String.Size(string(v.FailedStage))
	size += ord.String.Size(v.Error)
	size += varint.Int.Size(len(v.Transitions))
	for _, t := range v.Transitions {
		size += ord.String.Size(t.State)
		size += varint.Int64.Size(unixMicro(t.At))
	}
	size += varint.Int.Size(len(v.Attempts))
	for _, a := range v.Attempts {
		size += ord.String.Size(string(a.Stage))
		size += varint.Int.Size(a.Attempts)
	}
	size += varint.Int64.Size(unixMicro(v.StartedAt))
	size += varint.Int64.Size(unixMicro(v.UpdatedAt))
	return
}

func (s runRecordMUS) Unmarshal(bs []byte) (v RunRecord, n int, err error) {
	var (
		n1  int
		str string
		cnt int
		ts  int64
	)
	fields := []*string{&v.ExecutionID, &v.DocumentID, &v.Bucket, &v.Key, &v.State, &str, &v.Error}
	for _, f := range fields {
		*f, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	v.FailedStage = StageName(str)

	cnt, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if cnt < 0 || cnt > len(bs)-n {
		err = errInvalidLength
		return
	}
	if cnt > 0 {
		v.Transitions = make([]Transition, cnt)
	}
	for i := range v.Transitions {
		v.Transitions[i].State, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		ts, n1, err = varint.Int64.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		v.Transitions[i].At = fromUnixMicro(ts)
	}

	cnt, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if cnt < 0 || cnt > len(bs)-n {
		err = errInvalidLength
		return
	}
	if cnt > 0 {
		v.Attempts = make([]StageAttempts, cnt)
	}
	for i := range v.Attempts {
		str, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		v.Attempts[i].Stage = StageName(str)
		v.Attempts[i].Attempts, n1, err = varint.Int.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}

	ts, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.StartedAt = fromUnixMicro(ts)
	ts, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt = fromUnixMicro(ts)
	return
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromUnixMicro(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}
