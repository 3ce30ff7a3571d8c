package credentials

// Repo persists a single credential across process restarts. Save and Clear
// operate on both tokens as one unit: a reader never observes a state where
// only one of the pair is present.
type Repo interface {
	Save(Credential) error
	Load() (*Credential, error) // nil, nil when nothing is stored
	Clear() error
}
