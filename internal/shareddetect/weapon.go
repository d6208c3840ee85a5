package shareddetect

import (
	"log"

	"sentinel/internal/pipeline"
	"sentinel/internal/registry"
)

const (
	weaponAreaFraction       = 0.40
	weaponNMSIoU             = 0.3
	weaponCap                = 3
	defaultWeaponMinConfidence = 0.40
)

// WeaponDetector unions results from a general weapon model and a
// specialized gun model when both are available, filters degenerate
// full-frame boxes, deduplicates via NMS-style IoU thresholding, and caps
// the result at 3 detections per frame (spec.md §4.2).
type WeaponDetector struct {
	general       *inferenceClient
	gun           *inferenceClient
	reg           *registry.Registry
	logger        *log.Logger
	minConfidence float64
}

// NewWeaponDetector constructs the weapon detector without a registry.
// A registry attached with WithRegistry is consulted to self-disable after
// 3 consecutive inference failures (spec.md §4.1/§7); without one, that
// bookkeeping is skipped (e.g. in isolated unit tests).
func NewWeaponDetector(generalEndpoint, gunEndpoint string, logger *log.Logger) *WeaponDetector {
	return &WeaponDetector{
		general:       newInferenceClient(generalEndpoint, logger),
		gun:           newInferenceClient(gunEndpoint, logger),
		logger:        logger,
		minConfidence: defaultWeaponMinConfidence,
	}
}

// WithMinConfidence overrides the zone-independent base confidence
// threshold (defaults to WEAPON_MIN_CONFIDENCE / 0.40).
func (d *WeaponDetector) WithMinConfidence(min float64) *WeaponDetector {
	if min > 0 {
		d.minConfidence = min
	}
	return d
}

// WithRegistry attaches the Model & Tracker Registry for consecutive-
// failure bookkeeping and returns the detector for chaining.
func (d *WeaponDetector) WithRegistry(reg *registry.Registry) *WeaponDetector {
	d.reg = reg
	return d
}

// Detect returns the unioned, filtered, deduplicated, capped weapon
// findings for one frame. frameArea is width*height in pixels, used for
// the area filter.
func (d *WeaponDetector) Detect(frameJPEG []byte, frameArea float64) []pipeline.WeaponFinding {
	if d.reg != nil && d.reg.WeaponDisabled() {
		return nil
	}

	var all []rawDetection
	failures := 0

	if r, err := d.general.infer(frameJPEG); err == nil {
		all = append(all, r...)
	} else {
		failures++
	}
	if r, err := d.gun.infer(frameJPEG); err == nil {
		all = append(all, r...)
	} else {
		failures++
	}

	// Both sub-models failed entirely (as opposed to simply returning no
	// detections): record a consecutive failure for the registry's
	// self-disable policy.
	if failures == 2 && d.reg != nil {
		d.reg.RecordWeaponFailure()
	} else if failures < 2 && d.reg != nil {
		d.reg.ResetWeaponFailures()
	}

	findings := make([]pipeline.WeaponFinding, 0, len(all))
	for _, r := range all {
		if len(r.BBox) != 4 {
			continue
		}
		if r.Confidence < d.minConfidence {
			continue
		}
		box := pipeline.BBox{X1: r.BBox[0], Y1: r.BBox[1], X2: r.BBox[2], Y2: r.BBox[3]}
		if frameArea > 0 && box.Area() > weaponAreaFraction*frameArea {
			continue // rejects degenerate full-frame boxes
		}
		findings = append(findings, pipeline.WeaponFinding{
			ClassName:  r.Class,
			Confidence: r.Confidence,
			BBox:       box,
		})
	}

	findings = dedupeWeaponsByClassIoU(findings)

	if len(findings) > weaponCap {
		findings = findings[:weaponCap]
	}
	return findings
}

// dedupeWeaponsByClassIoU applies NMS-style deduplication: within each
// class, boxes whose IoU exceeds weaponNMSIoU are collapsed to the
// highest-confidence survivor, and the overall result is sorted
// highest-confidence first (so a subsequent cap keeps the strongest
// detections).
func dedupeWeaponsByClassIoU(in []pipeline.WeaponFinding) []pipeline.WeaponFinding {
	byClass := make(map[string][]pipeline.WeaponFinding)
	for _, f := range in {
		byClass[f.ClassName] = append(byClass[f.ClassName], f)
	}

	var out []pipeline.WeaponFinding
	for _, group := range byClass {
		// Sort descending by confidence (simple insertion sort; group
		// sizes are tiny — a handful of detections per class per frame).
		for i := 1; i < len(group); i++ {
			for j := i; j > 0 && group[j].Confidence > group[j-1].Confidence; j-- {
				group[j], group[j-1] = group[j-1], group[j]
			}
		}
		kept := make([]pipeline.WeaponFinding, 0, len(group))
		for _, cand := range group {
			suppressed := false
			for _, k := range kept {
				if cand.BBox.IoU(k.BBox) > weaponNMSIoU {
					suppressed = true
					break
				}
			}
			if !suppressed {
				kept = append(kept, cand)
			}
		}
		out = append(out, kept...)
	}

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Confidence > out[j-1].Confidence; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
