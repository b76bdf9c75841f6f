//go:build jni

package main

/*
#cgo CFLAGS: -I${SRCDIR}/../../deps/jni/include

#include <jni.h>
#include <stdlib.h>

static const char* bridge_get_utf(JNIEnv* env, jstring s) {
	if (s == NULL) return NULL;
	return (*env)->GetStringUTFChars(env, s, NULL);
}

static void bridge_release_utf(JNIEnv* env, jstring s, const char* chars) {
	if (s != NULL && chars != NULL) (*env)->ReleaseStringUTFChars(env, s, chars);
}

static jstring bridge_new_utf(JNIEnv* env, const char* chars) {
	return (*env)->NewStringUTF(env, chars);
}
*/
import "C"

import (
	"strings"
	"unsafe"

	"llama_bridge/bridge"
)

// jniString copies a Java string into Go memory.
func jniString(env *C.JNIEnv, s C.jstring) string {
	chars := C.bridge_get_utf(env, s)
	if chars == nil {
		return ""
	}
	defer C.bridge_release_utf(env, s, chars)
	return C.GoString(chars)
}

// jniNewString returns s as a Java string. A generation cut off mid
// character would otherwise hand NewStringUTF malformed input.
func jniNewString(env *C.JNIEnv, s string) C.jstring {
	cs := C.CString(strings.ToValidUTF8(s, "\uFFFD"))
	defer C.free(unsafe.Pointer(cs))
	return C.bridge_new_utf(env, cs)
}

//export Java_com_example_lifequest_ai_LlamaInference_nativeInit
func Java_com_example_lifequest_ai_LlamaInference_nativeInit(env *C.JNIEnv, thiz C.jobject, modelPath C.jstring) C.jlong {
	return C.jlong(bridge.Default().Init(jniString(env, modelPath)))
}

//export Java_com_example_lifequest_ai_LlamaInference_nativeGenerate
func Java_com_example_lifequest_ai_LlamaInference_nativeGenerate(env *C.JNIEnv, thiz C.jobject, handle C.jlong, prompt C.jstring, maxTokens C.jint) C.jstring {
	text := bridge.Default().Generate(int64(handle), jniString(env, prompt), int(maxTokens))
	return jniNewString(env, text)
}

//export Java_com_example_lifequest_ai_LlamaInference_nativeDestroy
func Java_com_example_lifequest_ai_LlamaInference_nativeDestroy(env *C.JNIEnv, thiz C.jobject, handle C.jlong) {
	bridge.Default().Destroy(int64(handle))
}
