package loader

import (
	"github.com/rerupp/weatherhist/archive"
	"github.com/rerupp/weatherhist/model"
)

// LoadMessage is one decoded history record in flight between a producer
// and the consumer, carrying the database row id its metadata mirrors into
// so the consumer never has to look the location back up.
type LoadMessage struct {
	LID     uint
	Alias   string
	History model.History
}

// ArchiveProducer is the concrete Producer every database backend's
// bulk loader uses: it opens one location's archive and emits every stored
// history in central-directory order.
type ArchiveProducer struct{}

// Gather implements Producer[LoadMessage].
func (ArchiveProducer) Gather(job ArchiveJob, send func(LoadMessage)) error {
	if !job.File.Exists() {
		return nil
	}
	a, err := archive.Open(job.Alias, job.File)
	if err != nil {
		return err
	}
	histories, err := archive.IterDateRange(a, nil, false, archive.DecodeHistory)
	if err != nil {
		return err
	}
	for _, h := range histories {
		send(LoadMessage{LID: job.LID, Alias: job.Alias, History: h})
	}
	return nil
}
