// Package matching turns inbound SIRI-VM vehicle activities into persisted
// records.
//
// Each element is parsed into a typed record or a list of field errors. A
// rejected element yields exactly one ValidationError, critical when any
// mandatory field failed. Accepted elements are matched against scheduled
// reference data and appended to the record store. Rejections never abort
// the rest of the batch.
package matching
