package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/lessonswarm/internal/models"
	"github.com/Lllllllleong/lessonswarm/internal/pipeline"
)

type memoryObjects struct {
	objects map[string][]byte
	saved   []string
}

func (m *memoryObjects) Read(ctx context.Context, bucket, name string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+name]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (m *memoryObjects) Exists(ctx context.Context, bucket, name string) (bool, error) {
	_, ok := m.objects[bucket+"/"+name]
	return ok, nil
}

func (m *memoryObjects) SaveAtomically(ctx context.Context, bucket, name string, data []byte) error {
	key := bucket + "/" + name
	if _, ok := m.objects[key]; ok {
		return nil
	}
	m.objects[key] = data
	m.saved = append(m.saved, key)
	return nil
}

type recordingRunner struct {
	jobs []pipeline.Job
	resp *models.SwarmResponse
	err  error
}

func (r *recordingRunner) Process(ctx context.Context, job pipeline.Job) (*models.SwarmResponse, error) {
	r.jobs = append(r.jobs, job)
	return r.resp, r.err
}

func TestParseUploadObject(t *testing.T) {
	cases := []struct {
		name string
		want UploadTarget
		ok   bool
	}{
		{"uploads/user-1/proj-2/paper.pdf", UploadTarget{OwnerID: "user-1", ProjectID: "proj-2", DocumentName: "paper.pdf"}, true},
		{"uploads/user-1/_/Paper.PDF", UploadTarget{OwnerID: "user-1", DocumentName: "Paper.PDF"}, true},
		{"uploads/user-1/_/paper.pdf.storyboard.json", UploadTarget{}, false},
		{"uploads/user-1/paper.pdf", UploadTarget{}, false},
		{"uploads/user-1/p/nested/paper.pdf", UploadTarget{}, false},
		{"other/user-1/p/paper.pdf", UploadTarget{}, false},
		{"uploads//p/paper.pdf", UploadTarget{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseUploadObject(tc.name)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUploadTrigger_RunsSwarmAndArchives(t *testing.T) {
	objects := &memoryObjects{objects: map[string][]byte{"in/uploads/u1/_/notes.pdf": []byte("%PDF-1.7")}}
	runner := &recordingRunner{resp: &models.SwarmResponse{Storyboard: []models.PageResult{{Page: 1}}, PagesProcessed: 1}}
	f := NewUploadTriggerWith(objects, runner)

	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "in", Name: "uploads/u1/_/notes.pdf"}))

	require.Len(t, runner.jobs, 1)
	assert.Equal(t, pipeline.Job{Document: []byte("%PDF-1.7"), DocumentName: "notes.pdf", OwnerID: "u1"}, runner.jobs[0])
	require.Equal(t, []string{"in/uploads/u1/_/notes.pdf.storyboard.json"}, objects.saved)

	var archived models.SwarmResponse
	require.NoError(t, json.Unmarshal(objects.objects[objects.saved[0]], &archived))
	assert.Equal(t, 1, archived.PagesProcessed)
}

func TestUploadTrigger_SkipsExistingStoryboard(t *testing.T) {
	objects := &memoryObjects{objects: map[string][]byte{
		"in/uploads/u1/_/notes.pdf":                 []byte("%PDF"),
		"in/uploads/u1/_/notes.pdf.storyboard.json": []byte("{}"),
	}}
	runner := &recordingRunner{}

	require.NoError(t, NewUploadTriggerWith(objects, runner).Process(context.Background(), GCSEvent{Bucket: "in", Name: "uploads/u1/_/notes.pdf"}))

	assert.Empty(t, runner.jobs)
	assert.Empty(t, objects.saved)
}

func TestUploadTrigger_IgnoresOtherObjects(t *testing.T) {
	runner := &recordingRunner{}

	require.NoError(t, NewUploadTriggerWith(&memoryObjects{objects: map[string][]byte{}}, runner).Process(context.Background(), GCSEvent{Bucket: "in", Name: "avatars/u1.png"}))

	assert.Empty(t, runner.jobs)
}

func TestUploadTrigger_ArchivesRejectedJob(t *testing.T) {
	objects := &memoryObjects{objects: map[string][]byte{"in/uploads/u1/_/empty.pdf": {}}}
	runner := &recordingRunner{err: errInvalidForTest}

	require.NoError(t, NewUploadTriggerWith(objects, runner).Process(context.Background(), GCSEvent{Bucket: "in", Name: "uploads/u1/_/empty.pdf"}))

	var archived models.SwarmResponse
	require.NoError(t, json.Unmarshal(objects.objects["in/uploads/u1/_/empty.pdf.storyboard.json"], &archived))
	assert.Equal(t, errInvalidForTest.Error(), archived.Error)
	assert.NotNil(t, archived.Storyboard)
}

func TestUploadTrigger_RetriesOtherFailures(t *testing.T) {
	objects := &memoryObjects{objects: map[string][]byte{"in/uploads/u1/_/a.pdf": []byte("%PDF")}}
	runner := &recordingRunner{err: context.DeadlineExceeded}

	err := NewUploadTriggerWith(objects, runner).Process(context.Background(), GCSEvent{Bucket: "in", Name: "uploads/u1/_/a.pdf"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, objects.saved)
}

var errInvalidForTest = invalidJob{}

type invalidJob struct{}

func (invalidJob) Error() string        { return "No PDF file provided" }
func (invalidJob) Is(target error) bool { return target == pipeline.ErrInvalidJob }
