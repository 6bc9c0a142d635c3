// Package synapse defines the envelopes exchanged between the gateway and the
// worker pool.
//
// An envelope fuses one request's incoming fields with the outgoing fields a
// worker produces for it. Every field has a usable default, so an envelope can
// be built from an empty body (mock and test paths rely on this).
//
// Envelopes are values. Operations never mutate the envelope they receive:
// they return a new one carrying outgoing fields, and the outgoing success
// fields and error_message are never both set.
//
// Tasks and engines are closed sets:
//   - tts_clone: text-to-speech cloning, engine StyleTTS2 (OpenVoice reserved)
//   - available_tasks: lists the tasks the gateway serves, no engine
package synapse
