/*
go-fallsense is a frame by frame fall and near-fall detection engine for
monitoring a single person through a stream of body keypoint estimates.

It combines two independent decision paths over the same keypoint stream: a
windowed statistical classifier (FeatureEngineer feeding a FallClassifier
backed by a trained scorer) and a rule based kinematic state machine
(NearFallDetector) working on body-height normalised hip motion.  The
Pipeline composes both paths into a single alert signal per frame and
triggers the clip recorder when a fall is confirmed.

Pose estimation itself is an external concern, see the pose subpackage for
the input data model.  Example usage is in the cmd subdirectory.
*/
package fallsense
