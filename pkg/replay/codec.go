package replay

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/sampling"
)

// SchemaVersion identifies the corpus exchange format produced by Encode.
// The document itself carries no version field; producers and consumers
// must agree on it out of band.
const SchemaVersion = 1

//go:embed corpus.schema.json
var corpusSchemaJSON []byte

const corpusSchemaURL = "mem://qreplay/corpus.schema.json"

var corpusSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(corpusSchemaJSON, &doc); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(corpusSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(corpusSchemaURL)
})

// recordDoc is the wire shape of a Record.
type recordDoc struct {
	CircuitStr  string    `json:"circuit_str"`
	NShots      int       `json:"n_shots"`
	SavedResult resultDoc `json:"saved_result"`
}

type resultDoc struct {
	RawData map[string]int `json:"raw_data"`
}

// Decode parses a corpus document. The document is validated against the
// corpus schema and every record against the Record invariants.
func Decode(doc []byte) ([]Record, error) {
	sch, err := corpusSchema()
	if err != nil {
		return nil, errmodel.System(errmodel.CodeInternal, "compile corpus schema", nil, err)
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var inst any
	if err := dec.Decode(&inst); err != nil {
		return nil, errmodel.Validation(errmodel.CodeInvalidCorpus, "corpus is not valid JSON", map[string]any{"error": err.Error()})
	}
	if err := sch.Validate(inst); err != nil {
		return nil, errmodel.Validation(errmodel.CodeInvalidCorpus, "corpus does not match schema", map[string]any{"error": err.Error()})
	}

	var docs []recordDoc
	if err := json.Unmarshal(doc, &docs); err != nil {
		return nil, errmodel.Validation(errmodel.CodeInvalidCorpus, "decode corpus", map[string]any{"error": err.Error()})
	}
	records := make([]Record, 0, len(docs))
	for i, d := range docs {
		r := Record{
			CircuitStr: d.CircuitStr,
			Shots:      d.NShots,
			Counts:     sampling.Counts(d.SavedResult.RawData),
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// Encode renders records in the corpus exchange format, preserving order.
func Encode(records []Record) ([]byte, error) {
	docs := make([]recordDoc, 0, len(records))
	for _, r := range records {
		docs = append(docs, toDoc(r))
	}
	return json.Marshal(docs)
}

func toDoc(r Record) recordDoc {
	raw := make(map[string]int, len(r.Counts))
	for k, v := range r.Counts {
		raw[k] = v
	}
	return recordDoc{
		CircuitStr:  r.CircuitStr,
		NShots:      r.Shots,
		SavedResult: resultDoc{RawData: raw},
	}
}

// MarshalRecord renders a single record as one element of the exchange
// format. Stores use it to persist records individually.
func MarshalRecord(r Record) ([]byte, error) {
	return json.Marshal(toDoc(r))
}

// UnmarshalRecord parses one exchange-format element and validates it.
func UnmarshalRecord(b []byte) (Record, error) {
	var d recordDoc
	if err := json.Unmarshal(b, &d); err != nil {
		return Record{}, errmodel.Validation(errmodel.CodeInvalidCorpus, "decode record", map[string]any{"error": err.Error()})
	}
	r := Record{CircuitStr: d.CircuitStr, Shots: d.NShots, Counts: sampling.Counts(d.SavedResult.RawData)}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}
