package classroom

// Key layout, per course c, poll question q, and student question id.
// Everything outside the archive sub-namespace is wiped when a session
// starts or stops:
//
//	course:{c}:session:live         "1" while a session is running
//	course:{c}:current_qid          id of the current poll question
//	course:{c}:q:{q}:meta           QuestionMeta JSON
//	course:{c}:q:{q}:responses      map[studentID]StoredResponse JSON
//	course:{c}:q:{q}:counts         map[bucket]count JSON
//	course:{c}:question:{id}        StudentQuestion JSON, expires
//	course:{c}:ratelimit:ask:{pid}  rate-limit marker, expires
//	course:{c}:archive:{sid}        ArchivedSession JSON, expires

func coursePrefix(course string) string { return "course:" + course + ":" }

func sessionKey(course string) string { return coursePrefix(course) + "session:live" }

func currentQIDKey(course string) string { return coursePrefix(course) + "current_qid" }

func pollPrefix(course string) string { return coursePrefix(course) + "q:" }

func questionMetaKey(course, qid string) string {
	return pollPrefix(course) + qid + ":meta"
}

func questionResponsesKey(course, qid string) string {
	return pollPrefix(course) + qid + ":responses"
}

func questionCountsKey(course, qid string) string {
	return pollPrefix(course) + qid + ":counts"
}

func studentQuestionPrefix(course string) string { return coursePrefix(course) + "question:" }

func studentQuestionKey(course, id string) string {
	return studentQuestionPrefix(course) + id
}

func askRateKey(course, studentID string) string {
	return coursePrefix(course) + "ratelimit:ask:" + studentID
}

func archivePrefix(course string) string { return coursePrefix(course) + "archive:" }

func archiveKey(course, sessionID string) string {
	return archivePrefix(course) + sessionID
}
