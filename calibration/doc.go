// Package calibration reads and writes shunt monitor calibration files.
//
// # File Format
//
// A calibration file is a flat map from parameter name to resistance in
// ohms. JSON is the format the bench scripts have always produced:
//
//	{"R19": 0.5, "R17": 5.0, "R15": 50.0, "R_FET": 0.021}
//
// The same map may be stored as YAML by using a .yaml or .yml extension:
//
//	R19: 0.5
//	R17: 5.0
//	R_FET: 0.021
//
// # Keys
//
// Each key maps to the wire index used in config read and write commands:
//
//	R19=0 R17=1 R15=2 R13=3 R11=4 R9=5 R2=6 R1=7 R_FET=8
//
// A file may carry any subset of the keys. Unknown keys are an error.
//
// # Usage
//
//	params, err := calibration.Parse("post_cal_cfg.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, k := range params.Ordered() {
//	    idx, _ := k.Index()
//	    fmt.Printf("%-5s index=%d value=%g\n", k, idx, params[k])
//	}
package calibration
