package simulation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"epi-model/model"
	"epi-model/utils"

	"github.com/vmihailenco/msgpack/v5"
)

// SimulationSerializer writes the files of one run under baseDir/simulationID
type SimulationSerializer struct {
	baseDir          string
	simulationID     string
	maxSnapshotCount int
}

// NewSimulationSerializer creates a serializer; at most maxSnapshotCount
// snapshots of each kind are kept, zero keeps all
func NewSimulationSerializer(baseDir string, simulationID string, maxSnapshotCount int) *SimulationSerializer {
	return &SimulationSerializer{
		baseDir:          baseDir,
		simulationID:     simulationID,
		maxSnapshotCount: maxSnapshotCount,
	}
}

// Dir returns the directory of the run
func (s *SimulationSerializer) Dir() string {
	return filepath.Join(s.baseDir, s.simulationID)
}

// Path returns the path of a file inside the run directory
func (s *SimulationSerializer) Path(name string) string {
	return filepath.Join(s.Dir(), name)
}

// Exists checks whether the run directory exists
func (s *SimulationSerializer) Exists() bool {
	_, err := os.Stat(s.Dir())
	return !os.IsNotExist(err)
}

// EnsureDir creates the run directory
func (s *SimulationSerializer) EnsureDir() error {
	return os.MkdirAll(s.Dir(), 0755)
}

// #region serialize

func (s *SimulationSerializer) list(fileType string, suffixName string) ([]string, error) {
	entries, err := os.ReadDir(s.Dir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), fileType+"-") && strings.HasSuffix(entry.Name(), suffixName) {
			files = append(files, filepath.Join(s.Dir(), entry.Name()))
		}
	}

	// timestamps are ISO 8601, so names sort by time
	sort.Strings(files)
	return files, nil
}

func readMsgpack[T any](filePath string) (*T, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var ret T
	if err := msgpack.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	return &ret, nil
}

func writeMsgpack(filePath string, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

func (s *SimulationSerializer) timestampedPath(fileType string, suffixName string) string {
	timestamp := time.Now().UTC().Format("20060102T150405.000000000Z")
	return s.Path(fmt.Sprintf("%s-%s%s", fileType, timestamp, suffixName))
}

func (s *SimulationSerializer) write(fileType string, v any) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}
	if err := writeMsgpack(s.timestampedPath(fileType, ".msgpack"), v); err != nil {
		return err
	}
	return s.clean(fileType, ".msgpack")
}

// clean removes the oldest files beyond maxSnapshotCount
func (s *SimulationSerializer) clean(fileType string, suffixName string) error {
	if s.maxSnapshotCount <= 0 {
		return nil
	}

	files, err := s.list(fileType, suffixName)
	if err != nil {
		return err
	}

	for i := 0; i < len(files)-s.maxSnapshotCount; i++ {
		if err := os.Remove(files[i]); err != nil {
			return err
		}
	}
	return nil
}

// #endregion

// #region snapshot

// GetLatestSnapshot returns the newest snapshot, or nil when there is none
func (s *SimulationSerializer) GetLatestSnapshot() (*model.ModelDumpData, error) {
	files, err := s.list("snapshot", ".msgpack")
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return readMsgpack[model.ModelDumpData](files[len(files)-1])
}

func (s *SimulationSerializer) SaveSnapshot(snapshot *model.ModelDumpData) error {
	return s.write("snapshot", snapshot)
}

// SavePersonDump writes the population state of a day; person dumps are
// never cleaned
func (s *SimulationSerializer) SavePersonDump(snapshot *model.ModelDumpData) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}
	return writeMsgpack(s.Path(fmt.Sprintf("persons-day-%04d.msgpack", snapshot.Day)), snapshot)
}

// LoadPersonDump reads the person dump of a day
func (s *SimulationSerializer) LoadPersonDump(day int) (*model.ModelDumpData, error) {
	return readMsgpack[model.ModelDumpData](s.Path(fmt.Sprintf("persons-day-%04d.msgpack", day)))
}

// #endregion

// #region finished mark

type FinishMark struct {
	Time float64
}

func (s *SimulationSerializer) MarkFinished(at float64) error {
	return s.write("finished", &FinishMark{Time: at})
}

func (s *SimulationSerializer) IsFinished() (bool, error) {
	files, err := s.list("finished", ".msgpack")
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// #endregion

// #region acc-state

func (s *SimulationSerializer) GetLatestAccumulativeState() (*AccumulativeModelState, error) {
	files, err := s.list("acc-state", ".lz4")
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return LoadAccumulativeModelState(files[len(files)-1])
}

func (s *SimulationSerializer) SaveAccumulativeState(state *AccumulativeModelState) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}

	fileType := "acc-state"
	if err := SaveAccumulativeModelState(s.timestampedPath(fileType, ".lz4"), state); err != nil {
		return err
	}
	return s.clean(fileType, ".lz4")
}

// #endregion

// #region graph

// SavePhaseGraph stores the disease phase graph
func (s *SimulationSerializer) SavePhaseGraph(graph *utils.NetworkXGraph) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}
	return utils.SaveGraphToFile(graph, s.Path("phase-graph.msgpack"))
}

// LoadPhaseGraph loads the disease phase graph
func (s *SimulationSerializer) LoadPhaseGraph() (*utils.NetworkXGraph, error) {
	return utils.LoadGraphFromFile(s.Path("phase-graph.msgpack"))
}

// #endregion

// #region summary

func (s *SimulationSerializer) SaveSummary(summary *Summary) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}
	return writeMsgpack(s.Path("summary.msgpack"), summary)
}

func (s *SimulationSerializer) LoadSummary() (*Summary, error) {
	return readMsgpack[Summary](s.Path("summary.msgpack"))
}

// #endregion

// SaveMetadata stores the scenario next to its outputs
func (s *SimulationSerializer) SaveMetadata(metadata *ScenarioMetadata) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}
	return metadata.Save(s.Path("metadata.yaml"))
}

// LoadMetadata loads the stored scenario
func (s *SimulationSerializer) LoadMetadata() (*ScenarioMetadata, error) {
	if !s.Exists() {
		return nil, nil
	}
	return LoadScenarioMetadata(s.Path("metadata.yaml"))
}
