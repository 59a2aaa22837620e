package simulation

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

// SaveAccumulativeModelState writes the series as lz4-compressed little
// endian arrays: sample, phase and type counts, then times, phase counts,
// occupancy and infections
func SaveAccumulativeModelState(path string, state *AccumulativeModelState) error {
	samples := int32(len(state.Times))
	if samples == 0 {
		return fmt.Errorf("empty accumulative state")
	}
	phases := int32(len(state.PhaseCounts[0]))
	types := int32(len(state.Occupancy[0]))
	if !state.validate(int(phases), int(types)) {
		return fmt.Errorf("accumulative state is not rectangular")
	}

	var buf bytes.Buffer
	for _, v := range []any{samples, phases, types, state.Times} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, series := range [][][]int32{state.PhaseCounts, state.Occupancy, state.Infections} {
		for _, row := range series {
			if err := binary.Write(&buf, binary.LittleEndian, row); err != nil {
				return err
			}
		}
	}

	var out bytes.Buffer
	w := lz4.NewWriter(&out)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return os.WriteFile(path, out.Bytes(), 0644)
}

// LoadAccumulativeModelState reads a file written by SaveAccumulativeModelState
func LoadAccumulativeModelState(path string) (*AccumulativeModelState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, lz4.NewReader(bytes.NewReader(raw))); err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	reader := bytes.NewReader(buf.Bytes())

	var samples, phases, types int32
	for _, v := range []*int32{&samples, &phases, &types} {
		if err := binary.Read(reader, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	if samples < 0 || phases < 0 || types < 0 {
		return nil, fmt.Errorf("corrupt accumulative state header")
	}

	state := &AccumulativeModelState{Times: make([]float64, samples)}
	if err := binary.Read(reader, binary.LittleEndian, state.Times); err != nil {
		return nil, err
	}

	readSeries := func(width int32) ([][]int32, error) {
		series := make([][]int32, samples)
		for i := range series {
			series[i] = make([]int32, width)
			if err := binary.Read(reader, binary.LittleEndian, series[i]); err != nil {
				return nil, err
			}
		}
		return series, nil
	}
	if state.PhaseCounts, err = readSeries(phases); err != nil {
		return nil, err
	}
	if state.Occupancy, err = readSeries(types); err != nil {
		return nil, err
	}
	if state.Infections, err = readSeries(types); err != nil {
		return nil, err
	}
	return state, nil
}
